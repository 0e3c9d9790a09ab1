package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const harvestABI = `[{"inputs":[],"name":"harvest","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

var harvestCalldata = mustPack(harvestABI, "harvest")

// HarvestCalldata returns the ABI-encoded call of the parameterless harvest() function
func HarvestCalldata() []byte {
	return append([]byte(nil), harvestCalldata...)
}

func mustPack(definition, method string) []byte {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	data, err := parsed.Pack(method)
	if err != nil {
		panic(err)
	}
	return data
}
