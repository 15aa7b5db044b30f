package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alfarkas/basic-contract-interaction/internal/service"
	"github.com/alfarkas/basic-contract-interaction/pkg/config"

	"github.com/spf13/cobra"
)

var buildTxCmd = &cobra.Command{
	Use:   "build <create|delegate|accept> [args...]",
	Short: "构建未签名交易 (Online)",
	Long: `查询 nonce 与 gasPrice, 构建未签名的合约调用交易并保存为 JSON 文件, 供离线签名使用。

示例:
  product-cli build create chair --from 0x...
  product-cli build delegate 3 0xNewOwner --from 0x...`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		from, _ := cmd.Flags().GetString("from")
		outputFile, _ := cmd.Flags().GetString("output")

		// 1. 解析操作
		op, err := parseOperation(args[0], args[1:])
		if err != nil {
			fail("%v", err)
		}

		// 2. 查询链上参数并构建
		ctx := context.Background()
		client := dialLedger(ctx)
		defer client.Close()

		builder := service.NewSubmitterService(client, nil, service.WithGasLimit(config.Global.Ledger.GasLimit))
		utx, err := builder.Build(ctx, op, from)
		if err != nil {
			fail("构建交易失败: %v", err)
		}

		// 3. 保存
		data, _ := json.MarshalIndent(utx, "", "  ")
		if err := os.WriteFile(outputFile, data, 0644); err != nil {
			fail("保存文件失败: %v", err)
		}

		fmt.Printf("✅ 未签名交易已生成: %s\n", outputFile)
		fmt.Printf("Method: %s  Nonce: %d  Gas: %d  GasPrice: %s\n", op.Method(), utx.Nonce, utx.Gas, utx.GasPrice)
	},
}

func init() {
	rootCmd.AddCommand(buildTxCmd)
	buildTxCmd.Flags().String("from", "", "发起地址")
	_ = buildTxCmd.MarkFlagRequired("from")
	buildTxCmd.Flags().StringP("output", "o", "unsigned.json", "输出文件路径")
}
