package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger"
	"github.com/alfarkas/basic-contract-interaction/internal/service"
	"github.com/alfarkas/basic-contract-interaction/internal/service/observer"
	"github.com/alfarkas/basic-contract-interaction/pkg/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "创建产品, 发起地址成为 owner",
	Args:  cobra.ExactArgs(1),
	Run:   runSubmit("create"),
}

var delegateCmd = &cobra.Command{
	Use:   "delegate <product-id> <new-owner>",
	Short: "把产品转交给新地址, 对方接受后生效",
	Args:  cobra.ExactArgs(2),
	Run:   runSubmit("delegate"),
}

var acceptCmd = &cobra.Command{
	Use:   "accept <product-id>",
	Short: "接受转交给自己的产品",
	Args:  cobra.ExactArgs(1),
	Run:   runSubmit("accept"),
}

func init() {
	for _, c := range []*cobra.Command{createCmd, delegateCmd, acceptCmd} {
		rootCmd.AddCommand(c)
		c.Flags().String("from", "", "发起地址")
		_ = c.MarkFlagRequired("from")
		c.Flags().Bool("wait", false, "等待交易达到最小确认数")
		addSignerFlags(c)
	}
}

func runSubmit(method string) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		from, _ := cmd.Flags().GetString("from")
		wait, _ := cmd.Flags().GetBool("wait")

		// 1. 解析操作
		op, err := parseOperation(method, args)
		if err != nil {
			fail("%v", err)
		}

		// 2. 构建, 签名, 广播
		ctx := context.Background()
		client := dialLedger(ctx)
		defer client.Close()

		submitter := service.NewSubmitterService(client, loadSigner(cmd), service.WithGasLimit(config.Global.Ledger.GasLimit))
		hash, err := submitter.Submit(ctx, op, from, nil)
		if err != nil {
			fail("%s 失败: %v", op.Method(), err)
		}
		fmt.Printf("✅ 交易已广播: %s\n", hash.Hex())

		// 3. 可选: 等待确认
		if wait {
			waitFinal(ctx, client, hash)
		}
	}
}

func waitFinal(ctx context.Context, client ledger.Client, hash common.Hash) {
	tracker := observer.NewConfirmationTracker(client, config.MinConfirmations)
	ticker := time.NewTicker(config.Global.Ledger.ConfirmInterval)
	defer ticker.Stop()

	for {
		state, err := tracker.Status(ctx, hash)
		switch {
		case err != nil:
			fmt.Printf("查询确认状态失败, 稍后重试: %v\n", err)
		case state.Found && !state.Successful:
			fail("交易已上链但执行失败 (区块 %d)", state.BlockNumber)
		case state.Final:
			fmt.Printf("✅ 已确认: 区块 %d, 确认数 %d/%d\n", state.BlockNumber, state.Confirmations, state.Threshold)
			return
		case state.Found:
			fmt.Printf("等待确认: %d/%d\n", state.Confirmations, state.Threshold)
		default:
			fmt.Println("等待上链...")
		}
		<-ticker.C
	}
}
