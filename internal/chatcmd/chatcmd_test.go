package chatcmd_test

import (
	"testing"

	"github.com/dom/stream-games/internal/chatcmd"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		msg  string
		want chatcmd.Command
	}{
		{msg: "!palpite 230,50", want: chatcmd.Command{Kind: chatcmd.KindGuess, Arg: "230,50"}},
		{msg: "  !P   15.5 ", want: chatcmd.Command{Kind: chatcmd.KindGuess, Arg: "15.5"}},
		{msg: "!time\tTime Azul", want: chatcmd.Command{Kind: chatcmd.KindJoin, Arg: "Time Azul"}},
		{msg: "!TIME #2", want: chatcmd.Command{Kind: chatcmd.KindJoin, Arg: "#2"}},
		{msg: "!palpite", want: chatcmd.Command{}},
		{msg: "!palpite230", want: chatcmd.Command{}},
		{msg: "!sorteio agora", want: chatcmd.Command{}},
		{msg: "palpite 230", want: chatcmd.Command{}},
		{msg: "", want: chatcmd.Command{}},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, chatcmd.Parse(tt.msg))
		})
	}
}

func TestParseLine(t *testing.T) {
	user, msg, ok := chatcmd.ParseLine("Ana: !p 12,00")
	assert.True(t, ok)
	assert.Equal(t, "Ana", user)
	assert.Equal(t, "!p 12,00", msg)

	user, msg, ok = chatcmd.ParseLine("bia: hora: 10:30")
	assert.True(t, ok)
	assert.Equal(t, "bia", user)
	assert.Equal(t, "hora: 10:30", msg)

	for _, line := range []string{"no separator", ": empty user", "user:   "} {
		_, _, ok := chatcmd.ParseLine(line)
		assert.False(t, ok, line)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "guess", chatcmd.KindGuess.String())
	assert.Equal(t, "join", chatcmd.KindJoin.String())
	assert.Equal(t, "none", chatcmd.KindNone.String())
}
