package server

import (
	"math/rand"
	"regexp"
	"strings"
)

const (
	roomCodeLength = 6

	// 去掉 0/O/1/I 等易混字形
	roomCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
)

var (
	roomCodeRe = regexp.MustCompile(`^[2-9A-HJ-NP-Z]{6}$`)
	nicknameRe = regexp.MustCompile(`^[A-Za-z0-9_-]{2,10}$`)
)

// generateRoomCode 从受限字母表生成 6 位房间码
func generateRoomCode(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(roomCodeLength)
	for i := 0; i < roomCodeLength; i++ {
		b.WriteByte(roomCodeAlphabet[rng.Intn(len(roomCodeAlphabet))])
	}
	return b.String()
}

// validRoomCode 房间码是否符合固定格式
func validRoomCode(code string) bool {
	return roomCodeRe.MatchString(code)
}

// validNickname 昵称限 2-10 个字母数字、连字符或下划线
func validNickname(nickname string) bool {
	return nicknameRe.MatchString(nickname)
}
