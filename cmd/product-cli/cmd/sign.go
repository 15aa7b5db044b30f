package cmd

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/pkg/keystore"
	"github.com/alfarkas/basic-contract-interaction/pkg/units"
	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/spf13/cobra"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "离线签名交易 (Offline Signing)",
	Long:  `读取未签名的交易 JSON 文件，使用 Keystore 进行签名，并输出已签名的交易 (Raw Tx)。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		outputFile, _ := cmd.Flags().GetString("output")
		keystoreFile, _ := cmd.Flags().GetString("keystore")

		// 1. 读取未签名交易
		data, err := os.ReadFile(inputFile)
		if err != nil {
			fail("读取输入文件失败: %v", err)
		}
		var utx types.UnsignedTransaction
		if err := json.Unmarshal(data, &utx); err != nil {
			fail("解析交易文件失败: %v", err)
		}

		// 显示交易详情供用户确认 (Verify on Screen)
		fmt.Println("\n================ 待签名交易 ================")
		fmt.Printf("ChainID:    %d\n", utx.ChainID)
		fmt.Printf("From:       %s\n", utx.From)
		fmt.Printf("Contract:   %s\n", utx.To)
		fmt.Printf("Nonce:      %d\n", utx.Nonce)
		fmt.Printf("Gas:        %d\n", utx.Gas)
		fmt.Printf("GasPrice:   %s\n", formatGwei(utx.GasPrice))
		fmt.Printf("MaxFee:     %s\n", formatMaxFee(utx.Gas, utx.GasPrice))
		fmt.Printf("Data:       %s\n", utx.Data)
		fmt.Println("============================================")

		// 2. 加载 Keystore 并解密
		fmt.Printf("\n正在从 %s 加载 Keystore...\n", keystoreFile)
		key, err := keystore.LoadKey(keystoreFile, readPassword("请输入 Keystore 密码以确认签名: "))
		if err != nil {
			fail("解密失败 (密码错误?): %v", err)
		}

		// 3. 签名
		signed, err := signer.SignWithKey(key, &utx)
		if err != nil {
			fail("签名失败: %v", err)
		}

		// 4. 输出结果
		outputData, _ := json.MarshalIndent(signed, "", "  ")
		if err := os.WriteFile(outputFile, outputData, 0644); err != nil {
			fail("保存结果失败: %v", err)
		}

		fmt.Printf("\n✅ 签名成功!\n")
		fmt.Printf("TxHash: %s\n", signed.Hash)
		fmt.Printf("已保存到: %s\n", outputFile)
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringP("input", "i", "unsigned.json", "未签名的交易文件路径")
	signCmd.Flags().StringP("output", "o", "signed.json", "签名后的输出文件路径")
	signCmd.Flags().StringP("keystore", "k", "signer.json", "Keystore 文件路径")
}

func formatGwei(wei string) string {
	v, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return wei + " wei"
	}
	return units.WeiToGwei(v).String() + " gwei"
}

// formatMaxFee gas * gasPrice, 以 ETH 显示
func formatMaxFee(gas uint64, wei string) string {
	v, ok := new(big.Int).SetString(wei, 10)
	if !ok {
		return "-"
	}
	return units.WeiToEther(units.MaxFee(gas, v)).String() + " ETH"
}
