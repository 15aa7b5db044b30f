package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service"
	"github.com/alfarkas/basic-contract-interaction/pkg/address"

	"github.com/spf13/cobra"
)

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "查询链上产品",
}

var productGetCmd = &cobra.Command{
	Use:   "get <id|name>",
	Short: "按 ID 或名称查询产品",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		client := dialLedger(ctx)
		defer client.Close()
		products := service.NewProductService(client, nil, 0)

		var (
			p   *model.Product
			err error
		)
		if id, perr := strconv.ParseUint(args[0], 10, 64); perr == nil {
			p, err = products.GetProduct(ctx, id)
		} else {
			p, err = products.FindByName(ctx, args[0])
		}
		if err != nil {
			fail("查询失败: %v", err)
		}
		printJSON(p)
	},
}

var productListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出全部产品, 可按状态过滤",
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")
		newOwner, _ := cmd.Flags().GetString("new-owner")

		ctx := context.Background()
		client := dialLedger(ctx)
		defer client.Close()
		products := service.NewProductService(client, nil, 0)

		var (
			list []model.Product
			err  error
		)
		switch {
		case newOwner != "":
			owner, perr := address.ParseETH(newOwner)
			if perr != nil {
				fail("地址无效: %s", newOwner)
			}
			list, err = products.DelegatedTo(ctx, owner)
		case status == "delegated":
			list, err = products.Delegated(ctx)
		case status == "accepted":
			list, err = products.Accepted(ctx)
		case status == "":
			list, err = products.ListProducts(ctx)
		default:
			fail("status 只能是 delegated 或 accepted")
		}
		if err != nil {
			fail("查询失败: %v", err)
		}
		printJSON(list)
	},
}

func init() {
	rootCmd.AddCommand(productCmd)
	productCmd.AddCommand(productGetCmd, productListCmd)
	productListCmd.Flags().String("status", "", "delegated | accepted")
	productListCmd.Flags().String("new-owner", "", "只列出转交给该地址且未接受的产品")
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail("序列化失败: %v", err)
	}
	fmt.Println(string(data))
}
