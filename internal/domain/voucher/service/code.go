package service

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Crockford base32：去掉 I L O U，便于店员手动输入
const codeAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// CodeGenerator 生成券码，测试中可替换
type CodeGenerator func() (string, error)

// NewCodeGenerator 每个字符 5 bit 熵，16 位即 80 bit
func NewCodeGenerator(length int) CodeGenerator {
	return func() (string, error) {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		// 256 是 32 的整数倍，取低 5 位无偏
		for i, b := range buf {
			buf[i] = codeAlphabet[b&31]
		}
		return string(buf), nil
	}
}

// 手动输入时常见的混淆字符，按 Crockford 规则归一
var codeReplacer = strings.NewReplacer(
	"I", "1",
	"L", "1",
	"O", "0",
	"-", "",
	" ", "",
)

// NormalizeCode 忽略大小写、分隔符，并把 I/L/O 映射为 1/1/0
func NormalizeCode(code string) string {
	return codeReplacer.Replace(strings.ToUpper(strings.TrimSpace(code)))
}
