package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alfarkas/basic-contract-interaction/internal/service"
	"github.com/alfarkas/basic-contract-interaction/pkg/wallet/types"

	"github.com/spf13/cobra"
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "广播已签名的交易 (Online)",
	Long:  `读取已签名的交易文件 (Signed Tx)，并广播到区块链网络。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		wait, _ := cmd.Flags().GetBool("wait")

		// 1. 读取 Signed Tx
		data, err := os.ReadFile(inputFile)
		if err != nil {
			fail("读取文件失败: %v", err)
		}
		var signed types.SignedTransaction
		if err := json.Unmarshal(data, &signed); err != nil {
			fail("解析文件失败: %v", err)
		}

		// 2. 连接节点并广播
		ctx := context.Background()
		fmt.Printf("正在连接 RPC: %s ...\n", rpcURL)
		client := dialLedger(ctx)
		defer client.Close()

		fmt.Printf("正在广播交易 Hash: %s ...\n", signed.Hash)
		hash, err := service.NewSubmitterService(client, nil).BroadcastSigned(ctx, &signed)
		if err != nil {
			fail("广播失败: %v", err)
		}
		fmt.Printf("✅ 广播成功! %s\n", hash.Hex())

		if wait {
			waitFinal(ctx, client, hash)
		}
	},
}

func init() {
	rootCmd.AddCommand(broadcastCmd)
	broadcastCmd.Flags().StringP("input", "i", "signed.json", "已签名的交易文件")
	broadcastCmd.Flags().Bool("wait", false, "等待交易达到最小确认数")
}
