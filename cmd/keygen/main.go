// cmd/keygen/main.go
//
// mint / claim 用の Ethereum 署名鍵を生成する小さなツールです。
// - secp256k1 keypair を生成し、address を表示
// - 秘密鍵を hex でファイルに保存（0600）
// - -project を指定すると Secret Manager に <prefix><lower(address)> として登録
// - -firebase-uid を指定すると、その Firebase ユーザーに wallet custom claim を設定
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	smpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	firebase "firebase.google.com/go/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/austyngo/ICO/internal/adapters/in/http/middleware"
	"github.com/austyngo/ICO/internal/domain/wallet"
	ethinfra "github.com/austyngo/ICO/internal/infra/ethereum"
)

func main() {
	out := flag.String("out", "ico-signer.key", "file to write the hex private key to")
	project := flag.String("project", os.Getenv("GCP_PROJECT_ID"), "GCP project; empty = file only")
	prefix := flag.String("prefix", ethinfra.DefaultSecretPrefix, "secret id prefix (SIGNER_SECRET_PREFIX)")
	creds := flag.String("credentials", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), "service account json")
	fbProject := flag.String("firebase-project", os.Getenv("FIREBASE_PROJECT_ID"), "Firebase project for -firebase-uid")
	fbUID := flag.String("firebase-uid", "", "link the generated address to this Firebase user (custom claim)")
	claim := flag.String("claim", middleware.DefaultWalletClaim, "custom claim name (FIREBASE_WALLET_CLAIM)")
	flag.Parse()

	// 1. keypair
	key, err := crypto.GenerateKey()
	if err != nil {
		log.Fatalf("failed to generate secp256k1 key: %v", err)
	}
	addr := wallet.Address(crypto.PubkeyToAddress(key.PublicKey))
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	// 2. ファイルとして保存（上書きしない）
	f, err := os.OpenFile(*out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		log.Fatalf("failed to create %s: %v", *out, err)
	}
	if _, err := f.WriteString(keyHex + "\n"); err != nil {
		_ = f.Close()
		log.Fatalf("failed to write %s: %v", *out, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("failed to close %s: %v", *out, err)
	}

	secretID := ethinfra.SecretID(*prefix, addr)

	// 3. Secret Manager（任意）
	if *project != "" {
		if err := store(context.Background(), *project, *creds, secretID, keyHex); err != nil {
			log.Fatalf("failed to store secret %s: %v", secretID, err)
		}
	}

	// 4. Firebase custom claim（任意）
	if *fbUID != "" {
		if err := linkWallet(context.Background(), *fbProject, *creds, *fbUID, *claim, addr); err != nil {
			log.Fatalf("failed to link wallet to uid=%s: %v", *fbUID, err)
		}
	}

	fmt.Println("============================================")
	fmt.Println("✅ ICO signer key generated")
	fmt.Println("============================================")
	fmt.Printf("Address:\n  %s\n\n", addr.Hex())
	fmt.Printf("Private key file (hex):\n  %s\n\n", *out)
	fmt.Printf("Secret id:\n  %s\n", secretID)
	if *project != "" {
		fmt.Printf("  (stored in projects/%s)\n", *project)
	}
	if *fbUID != "" {
		fmt.Printf("\nFirebase uid:\n  %s (%s=%s)\n", *fbUID, *claim, addr.Hex())
	}
	fmt.Println()
	fmt.Println("⚠ IMPORTANT:")
	fmt.Println("  - この鍵ファイルは Git に絶対にコミットしないでください。")
	fmt.Println("  - Secret Manager に登録したらローカルのコピーは安全な場所に退避してください。")
}

// store creates secretID (if missing) and adds keyHex as a new version.
func store(ctx context.Context, projectID, credentialsFile, secretID, keyHex string) error {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	defer c.Close()

	parent := "projects/" + projectID
	_, err = c.CreateSecret(ctx, &smpb.CreateSecretRequest{
		Parent:   parent,
		SecretId: secretID,
		Secret: &smpb.Secret{
			Replication: &smpb.Replication{
				Replication: &smpb.Replication_Automatic_{Automatic: &smpb.Replication_Automatic{}},
			},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("create secret: %w", err)
	}

	_, err = c.AddSecretVersion(ctx, &smpb.AddSecretVersionRequest{
		Parent:  parent + "/secrets/" + secretID,
		Payload: &smpb.SecretPayload{Data: []byte(keyHex)},
	})
	if err != nil {
		return fmt.Errorf("add secret version: %w", err)
	}
	return nil
}

// linkWallet sets {claim: address} on the Firebase user so the API accepts its ID tokens for address.
func linkWallet(ctx context.Context, projectID, credentialsFile, uid, claim string, addr wallet.Address) error {
	if projectID == "" {
		return fmt.Errorf("-firebase-project is required with -firebase-uid")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return fmt.Errorf("firebase auth: %w", err)
	}
	// 既存の claim は上書きされる
	if err := client.SetCustomUserClaims(ctx, uid, map[string]interface{}{claim: addr.Hex()}); err != nil {
		return fmt.Errorf("set custom claims: %w", err)
	}
	return nil
}
