package cmd

import (
	"fmt"
	"strconv"
	"syscall"

	"github.com/alfarkas/basic-contract-interaction/internal/model"
	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/pkg/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// parseOperation 按方法名和位置参数组装操作
func parseOperation(method string, args []string) (model.Operation, error) {
	switch method {
	case "create", model.MethodCreateProduct:
		if len(args) != 1 {
			return nil, fmt.Errorf("create 需要 1 个参数: <name>")
		}
		return model.CreateProduct{Name: args[0]}, nil
	case "delegate", model.MethodDelegateProduct:
		if len(args) != 2 {
			return nil, fmt.Errorf("delegate 需要 2 个参数: <product-id> <new-owner>")
		}
		id, err := parseProductID(args[0])
		if err != nil {
			return nil, err
		}
		return model.DelegateProduct{ProductID: id, NewOwner: args[1]}, nil
	case "accept", model.MethodAcceptProduct:
		if len(args) != 1 {
			return nil, fmt.Errorf("accept 需要 1 个参数: <product-id>")
		}
		id, err := parseProductID(args[0])
		if err != nil {
			return nil, err
		}
		return model.AcceptProduct{ProductID: id}, nil
	}
	return nil, fmt.Errorf("未知操作: %s", method)
}

func parseProductID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("产品 ID 无效: %s", s)
	}
	return id, nil
}

func addSignerFlags(cmd *cobra.Command) {
	cmd.Flags().String("key", "", "十六进制私钥, 本地签名")
	cmd.Flags().StringP("keystore", "k", "", "加密私钥文件, 本地签名")
	cmd.Flags().String("signer", "", "签名服务地址 (默认读取 signer.endpoint)")
}

// loadSigner 优先级: --key, --keystore, 签名服务
func loadSigner(cmd *cobra.Command) signer.Signer {
	key, _ := cmd.Flags().GetString("key")
	keystoreFile, _ := cmd.Flags().GetString("keystore")
	endpoint, _ := cmd.Flags().GetString("signer")

	switch {
	case key != "":
		s, err := signer.NewLocalSignerFromHex(key)
		if err != nil {
			fail("私钥无效: %v", err)
		}
		return s
	case keystoreFile != "":
		s, err := signer.NewLocalSignerFromKeystore(keystoreFile, readPassword("请输入 Keystore 密码: "))
		if err != nil {
			fail("解密失败 (密码错误?): %v", err)
		}
		return s
	}
	if endpoint == "" {
		endpoint = config.Global.Signer.Endpoint
	}
	return signer.NewRemoteSigner(endpoint, config.Global.Signer.Timeout)
}

func readPassword(prompt string) string {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fail("读取密码失败: %v", err)
	}
	return string(bytePassword)
}
