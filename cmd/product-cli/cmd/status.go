package cmd

import (
	"context"
	"regexp"

	"github.com/alfarkas/basic-contract-interaction/internal/service/observer"
	"github.com/alfarkas/basic-contract-interaction/pkg/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var hashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "查询交易是否成功以及确认数",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if !hashPattern.MatchString(args[0]) {
			fail("交易哈希无效: %s", args[0])
		}
		threshold, _ := cmd.Flags().GetUint64("confirmations")
		thresholdFn := config.MinConfirmations
		if cmd.Flags().Changed("confirmations") {
			thresholdFn = func() uint64 { return threshold }
		}

		ctx := context.Background()
		client := dialLedger(ctx)
		defer client.Close()

		state, err := observer.NewConfirmationTracker(client, thresholdFn).Status(ctx, common.HexToHash(args[0]))
		if err != nil {
			fail("查询失败: %v", err)
		}
		printJSON(state)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Uint64("confirmations", 0, "最小确认数 (默认读取 ledger.min_confirmation)")
}
