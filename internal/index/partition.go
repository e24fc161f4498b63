package index

import (
	"unicode/utf8"

	"github.com/soundbluemusic/dictgen/internal/config"
	"github.com/soundbluemusic/dictgen/internal/entry"
	dicterrors "github.com/soundbluemusic/dictgen/internal/errors"
)

// DefaultKey is assigned to headwords that do not start with a Hangul syllable.
const DefaultKey = "etc"

const (
	hangulBase  = 0xAC00
	hangulLast  = 0xD7A3
	choseongLen = 588 // 21 medials * 28 finals
)

var choseong = [19]string{
	"ㄱ", "ㄲ", "ㄴ", "ㄷ", "ㄸ", "ㄹ", "ㅁ", "ㅂ", "ㅃ", "ㅅ",
	"ㅆ", "ㅇ", "ㅈ", "ㅉ", "ㅊ", "ㅋ", "ㅌ", "ㅍ", "ㅎ",
}

// Choseong returns the leading consonant of the first rune of s, or DefaultKey
// when s does not start with a precomposed Hangul syllable.
func Choseong(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	if r < hangulBase || r > hangulLast {
		return DefaultKey
	}
	return choseong[(r-hangulBase)/choseongLen]
}

// ChoseongPartitioner shards by the leading consonant of the headword.
type ChoseongPartitioner struct{}

func (ChoseongPartitioner) Name() string { return config.PartitionChoseong }

func (ChoseongPartitioner) Key(e *entry.Entry) (string, bool) {
	if e.Korean == "" {
		return "", false
	}
	return Choseong(e.Korean), true
}

// CategoryPartitioner shards by category id.
type CategoryPartitioner struct{}

func (CategoryPartitioner) Name() string { return config.PartitionCategory }

func (CategoryPartitioner) Key(e *entry.Entry) (string, bool) {
	return e.CategoryID, e.CategoryID != ""
}

// ForName returns the partitioner configured by name.
func ForName(name string) (Partitioner, error) {
	switch name {
	case config.PartitionChoseong:
		return ChoseongPartitioner{}, nil
	case config.PartitionCategory:
		return CategoryPartitioner{}, nil
	default:
		return nil, dicterrors.NewInvalidConfig("partition", "unknown partition "+name)
	}
}
