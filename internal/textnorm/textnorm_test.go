package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ascii-case", "Hello  World", "hello world"},
		{"fullwidth", "ＡＢＣ　ｄｅｆ", "abc def"},
		{"halfwidth-kana", "ｶﾀｶﾅ", "カタカナ"},
		{"trim", "  わからない \n", "わからない"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestCompact(t *testing.T) {
	assert.Equal(t, Compact("わからない。"), Compact("わから ない"))
	assert.Equal(t, "idontknow", Compact("I dont know!!"))
	assert.Equal(t, "", Compact("   "))
}

func TestCountHits(t *testing.T) {
	text := Normalize("上司と家族の話")
	assert.Equal(t, 2, CountHits(text, []string{"上司", "家族", "友達"}))
	assert.True(t, ContainsAny(text, []string{"nope", "家族"}))
	assert.False(t, ContainsAny(text, []string{"", "友達"}))
}

func TestContainsWordBoundaries(t *testing.T) {
	tests := []struct {
		text   string
		lexeme string
		want   bool
	}{
		{"so much rage", "rage", true},
		{"rage!", "rage", true},
		{"it takes courage", "rage", false},
		{"about average", "rage", false},
		{"cloud storage", "rage", false},
		{"my home country", "try", false},
		{"the network is down", "work", false},
		{"i need to restart", "start", false},
		{"they said no", "they ", true},
		{"theyre", "they", false},
		{"i will try again", "try", true},
		{"怒りのrage", "rage", true},
		{"上司と家族", "家族", true},
		{"what was it again", "what was it", true},
		{"", "rage", false},
		{"rage", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.lexeme, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(Normalize(tt.text), tt.lexeme))
		})
	}
}
