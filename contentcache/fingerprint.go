package contentcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// keyIDLen 对外可见键取完整摘要的前 16 个十六进制字符
const keyIDLen = 16

// Source 参与指纹计算的全部输入。不含任何调用方身份字段。
type Source struct {
	// Provider 提供方标识
	Provider string

	// Model 模型标识
	Model string

	// Voice 音色标识
	Voice string

	// Subtype 操作子类型
	Subtype string

	// Text 原始文本，计算前会被规范化
	Text string
}

// Key 内容指纹。ID 是对外可见的短键，Digest 保留完整摘要用于精确去重。
type Key struct {
	ID     string
	Digest string
}

// String 返回对外可见的短键
func (k Key) String() string {
	return k.ID
}

// IsZero 判断是否为零值指纹
func (k Key) IsZero() bool {
	return k.ID == ""
}

// KeyFromDigest 从已知的完整摘要还原 Key
func KeyFromDigest(digest string) Key {
	if len(digest) < keyIDLen {
		return Key{}
	}
	return Key{ID: digest[:keyIDLen], Digest: digest}
}

// Fingerprint 计算内容指纹。纯函数，无 I/O。
// 相同的规范化文本与相同的参数恒产出相同指纹；任一参数不同则指纹不同。
func Fingerprint(src Source) Key {
	canonical := strings.Join([]string{
		src.Provider,
		src.Model,
		src.Voice,
		src.Subtype,
		NormalizeText(src.Text),
	}, "|")

	sum := sha256.Sum256([]byte(canonical))
	digest := hex.EncodeToString(sum[:])
	return Key{ID: digest[:keyIDLen], Digest: digest}
}

// 弯引号与各类横线统一映射为 ASCII 形式，
// 不同输入法产生的同一句文本才能命中同一份产物
var glyphMapper = strings.NewReplacer(
	"‘", "'", // '
	"’", "'", // '
	"“", `"`, // "
	"”", `"`, // "
	"–", "-", // –
	"—", "-", // —
	"−", "-", // −
)

// NormalizeText 文本规范化：NFKC 归一、统一引号横线、大小写折叠、
// 压缩并修剪空白。导出以便上层在展示或去重时复用同一规则。
func NormalizeText(text string) string {
	s := norm.NFKC.String(text)
	s = glyphMapper.Replace(s)
	// Caser 带内部状态，不能跨 goroutine 共享，每次调用新建
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
