package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alfarkas/basic-contract-interaction/internal/ledger"
	"github.com/alfarkas/basic-contract-interaction/pkg/config"
	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var (
	rpcURL       string
	contractAddr string
	callTimeout  time.Duration
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "product-cli",
	Short: "产品归属合约命令行工具",
	Long: `创建、转交、接受产品, 查询产品与交易确认状态, 以及订阅合约事件。
未指定的参数从 config.yaml / 环境变量读取。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init()
		logger.Init(config.Global.App.Env)
		if rpcURL == "" {
			rpcURL = config.Global.Ledger.RpcUrl
		}
		if contractAddr == "" {
			contractAddr = config.Global.Ledger.ContractAddr
		}
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc", "", "RPC 节点地址 (默认读取 ledger.rpc_url)")
	rootCmd.PersistentFlags().StringVar(&contractAddr, "contract", "", "合约地址 (默认读取 ledger.contract_addr)")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", 15*time.Second, "单次节点调用超时")
}

func dialLedger(ctx context.Context) *ledger.EthClient {
	if !common.IsHexAddress(contractAddr) {
		fail("合约地址无效: %s", contractAddr)
	}
	client, err := ledger.Dial(ctx, rpcURL, common.HexToAddress(contractAddr), ledger.WithCallTimeout(callTimeout))
	if err != nil {
		fail("连接节点失败: %v", err)
	}
	return client
}

func fail(format string, a ...interface{}) {
	fmt.Printf("❌ "+format+"\n", a...)
	os.Exit(1)
}
