// Package locale holds the caller-visible strings of the service.
package locale

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys
const (
	KeyLouder              = "louder"
	KeyCapabilityDisabled  = "capability_disabled"
	KeyPayloadUnavailable  = "payload_unavailable"
	KeyPlatformUnsupported = "platform_unsupported"
	KeyRecognitionFailed   = "recognition_failed"
	KeyRecognitionTimeout  = "recognition_timeout"
)

var entries = map[language.Tag]map[string]string{
	language.Chinese: {
		KeyLouder:              "没有听清，请大声一点再说一遍",
		KeyCapabilityDisabled:  "平台未开启语音文件转换能力，请联系管理员开启 enableLocalFile2Url",
		KeyPayloadUnavailable:  "无法获取语音内容",
		KeyPlatformUnsupported: "当前平台暂不支持语音识别",
		KeyRecognitionFailed:   "语音识别失败",
		KeyRecognitionTimeout:  "语音识别超时，请稍后再试",
	},
	language.English: {
		KeyLouder:              "I couldn't hear that, please speak a little louder",
		KeyCapabilityDisabled:  "Voice file conversion is not enabled on this platform, ask an admin to enable enableLocalFile2Url",
		KeyPayloadUnavailable:  "The voice message could not be fetched",
		KeyPlatformUnsupported: "Voice recognition is not supported on this platform",
		KeyRecognitionFailed:   "Speech recognition failed",
		KeyRecognitionTimeout:  "Speech recognition timed out, please try again later",
	},
}

var (
	cat     = newCatalog()
	matcher = language.NewMatcher([]language.Tag{language.Chinese, language.English})
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Chinese))
	for tag, msgs := range entries {
		for key, text := range msgs {
			b.SetString(tag, key, text)
		}
	}
	return b
}

// Printer renders message keys in one language
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a printer for the closest supported match of lang.
// Unknown or empty tags fall back to Chinese.
func NewPrinter(lang string) *Printer {
	tag, _, _ := matcher.Match(language.Make(lang))
	base, _ := tag.Base()
	return &Printer{p: message.NewPrinter(language.Make(base.String()), message.Catalog(cat))}
}

// Text returns the localized text for key
func (p *Printer) Text(key string) string {
	return p.p.Sprintf(key)
}
