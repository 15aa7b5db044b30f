package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/alfarkas/basic-contract-interaction/internal/service/signer"
	"github.com/alfarkas/basic-contract-interaction/pkg/keystore"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "管理加密的签名私钥文件",
}

var keystoreNewCmd = &cobra.Command{
	Use:   "new",
	Short: "生成新私钥并加密保存",
	Run: func(cmd *cobra.Command, args []string) {
		key, err := crypto.GenerateKey()
		if err != nil {
			fail("生成私钥失败: %v", err)
		}
		saveKeystore(cmd, key)
	},
}

var keystoreImportCmd = &cobra.Command{
	Use:   "import",
	Short: "导入十六进制私钥并加密保存",
	Run: func(cmd *cobra.Command, args []string) {
		key, err := signer.ParsePrivateKey(readPassword("请输入私钥 (hex): "))
		if err != nil {
			fail("%v", err)
		}
		saveKeystore(cmd, key)
	},
}

func init() {
	rootCmd.AddCommand(keystoreCmd)
	keystoreCmd.AddCommand(keystoreNewCmd, keystoreImportCmd)
	for _, c := range []*cobra.Command{keystoreNewCmd, keystoreImportCmd} {
		c.Flags().StringP("output", "o", "signer.json", "Keystore 文件路径")
		c.Flags().Bool("light", false, "使用较低的 scrypt 参数 (仅用于测试)")
	}
}

func saveKeystore(cmd *cobra.Command, key *ecdsa.PrivateKey) {
	outputFile, _ := cmd.Flags().GetString("output")
	light, _ := cmd.Flags().GetBool("light")

	if _, err := os.Stat(outputFile); err == nil {
		fail("文件已存在: %s", outputFile)
	}

	// 1. 设置密码
	password := readPassword("设置 Keystore 密码: ")
	if password != readPassword("再次输入密码: ") {
		fail("两次输入的密码不一致")
	}

	// 2. 加密并保存
	n := keystore.StandardScryptN
	if light {
		n = keystore.LightScryptN
	}
	encrypted, err := keystore.EncryptKeyWithN(key, password, n)
	if err != nil {
		fail("加密失败: %v", err)
	}
	if err := encrypted.SaveToFile(outputFile); err != nil {
		fail("保存失败: %v", err)
	}

	fmt.Printf("✅ Keystore 已保存: %s\n", outputFile)
	fmt.Printf("Address: %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
}
