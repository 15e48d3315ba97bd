package server

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRoomCode(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		code := generateRoomCode(rng)
		assert.Len(t, code, roomCodeLength)
		assert.True(t, validRoomCode(code), "generated code %q should be valid", code)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(roomCodeAlphabet, ch))
		}
		seen[code] = true
	}
	// 100 次生成几乎不可能全部撞车
	assert.Greater(t, len(seen), 90)
}

func TestValidRoomCode(t *testing.T) {
	t.Parallel()

	valid := []string{"ABCDEF", "234567", "XYZW99", "HJKMNP"}
	for _, code := range valid {
		assert.True(t, validRoomCode(code), code)
	}

	invalid := []string{
		"",        // 空
		"ABCDE",   // 太短
		"ABCDEFG", // 太长
		"ABCDE0",  // 含易混字符 0
		"ABCDEO",  // 含易混字符 O
		"ABCDE1",  // 含易混字符 1
		"ABCDEI",  // 含易混字符 I
		"abcdef",  // 小写
		"ABC DE",  // 空格
	}
	for _, code := range invalid {
		assert.False(t, validRoomCode(code), code)
	}
}

func TestValidNickname(t *testing.T) {
	t.Parallel()

	valid := []string{"ab", "Player_1", "maze-rush", "A1B2C3D4E5"}
	for _, name := range valid {
		assert.True(t, validNickname(name), name)
	}

	// 空、太短、太长、空格、非 ASCII、特殊字符
	invalid := []string{"", "a", "verylongname", "has space", "emoji😀", "<script>"}
	for _, name := range invalid {
		assert.False(t, validNickname(name), name)
	}
}
