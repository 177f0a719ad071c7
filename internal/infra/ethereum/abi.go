// internal/infra/ethereum/abi.go
package ethereum

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// CryptoDevs NFT (ERC721Enumerable) のうち、ownedTokenIds の実現に必要な関数だけ。
const nftABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenOfOwnerByIndex","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"index","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

// CryptoDevToken (ERC20 + claim).
const tokenABIJSON = `[
  {"type":"function","name":"tokenIdsClaimed","stateMutability":"view",
   "inputs":[{"name":"","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"maxTotalSupply","stateMutability":"view",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"mint","stateMutability":"payable",
   "inputs":[{"name":"amount","type":"uint256"}],
   "outputs":[]},
  {"type":"function","name":"claim","stateMutability":"nonpayable",
   "inputs":[],
   "outputs":[]}
]`

var (
	nftABI   = mustParseABI("nft", nftABIJSON)
	tokenABI = mustParseABI("token", tokenABIJSON)
)

func mustParseABI(name, js string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic(fmt.Sprintf("ethereum: parse %s abi: %v", name, err))
	}
	return a
}
