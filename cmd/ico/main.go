// cmd/ico/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/austyngo/ICO/internal/domain/token"
	"github.com/austyngo/ICO/internal/domain/wallet"
	"github.com/austyngo/ICO/internal/infra/config"
	"github.com/austyngo/ICO/internal/platform/di"
)

const usage = `usage: ico -address 0x... <command> [flags]

commands:
  eligibility      owned / unclaimed NFTs and claimable tokens
  summary          balance, total issued, remaining supply
  mint -n N        mint N tokens (pays N x UNIT_PRICE_WEI)
  claim            claim tokens for every unclaimed NFT
`

func main() {
	log.SetFlags(0)

	fs := flag.NewFlagSet("ico", flag.ExitOnError)
	addrFlag := fs.String("address", os.Getenv("ICO_ADDRESS"), "wallet address (or ICO_ADDRESS)")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage); fs.PrintDefaults() }
	_ = fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}
	addr, err := wallet.ParseAddress(*addrFlag)
	if err != nil {
		log.Fatalf("[ico] -address: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[ico] config: %v", err)
	}
	cont, err := di.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("[ico] init: %v", err)
	}
	defer cont.Close()

	cmd, args := fs.Arg(0), fs.Args()[1:]
	if err := run(ctx, cont, cmd, args, addr); err != nil {
		cont.Close()
		log.Fatalf("[ico] %s: %v", cmd, err)
	}
}

func run(ctx context.Context, cont *di.Container, cmd string, args []string, addr wallet.Address) error {
	switch cmd {
	case "eligibility":
		e, err := cont.EligibilityUC.GetEligibility(ctx, addr)
		if err != nil {
			return err
		}
		printEligibility(e)
		return nil

	case "summary":
		s, err := cont.WalletUC.GetSummary(ctx, addr)
		if err != nil {
			return err
		}
		printSummary(s)
		return nil

	case "mint":
		mfs := flag.NewFlagSet("mint", flag.ExitOnError)
		n := mfs.Int64("n", 0, "number of tokens to mint")
		_ = mfs.Parse(args)
		return act(ctx, cont, token.Action{Kind: token.ActionMint, Address: addr, Quantity: *n})

	case "claim":
		return act(ctx, cont, token.Action{Kind: token.ActionClaim, Address: addr})

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func act(ctx context.Context, cont *di.Container, a token.Action) error {
	if cont.Config.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cont.Config.ActionTimeout)
		defer cancel()
	}

	ticket, err := cont.ActionUC.Begin(ctx, a)
	if err != nil {
		return err
	}
	sub := ticket.Outcome()
	fmt.Printf("submitted  %s tx=%s payment=%s wei\n", a.Kind, sub.TxHash, sub.Payment)

	out, err := ticket.Await(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("confirmed  %s tx=%s\n", a.Kind, out.TxHash)

	if out.RefreshErr != nil {
		fmt.Printf("refresh    failed: %v\n", out.RefreshErr)
		return nil
	}
	if out.Snapshot != nil {
		printSummary(out.Snapshot.Summary)
		printEligibility(out.Snapshot.Eligibility)
	}
	return nil
}

func printEligibility(e token.Eligibility) {
	fmt.Printf("owned      %d NFT\n", e.Owned)
	fmt.Printf("unclaimed  %d NFT\n", e.Unclaimed)
	fmt.Printf("claimable  %d CD\n", e.ClaimableTokens())
	fmt.Printf("next       %s\n", token.NextStep(e, false))
}

func printSummary(s token.Summary) {
	fmt.Printf("balance    %s CD\n", token.FormatUnits(s.Balance))
	fmt.Printf("issued     %s / %s CD\n", token.FormatUnits(s.TotalIssued), token.FormatUnits(s.MaxSupply))
	fmt.Printf("remaining  %s CD\n", token.FormatUnits(s.Remaining()))
}
