package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEnvelope(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"selection", GetSelection(), `{"op":"get_selection"}`},
		{"paste", Paste(`echo "hi"`), `{"op":"paste","text":"echo \"hi\""}`},
		{"scroll up", ScrollLines(1), `{"op":"scroll_lines","amount":1}`},
		{"page down", ScrollPage(-1), `{"op":"scroll_page","amount":-1}`},
		{"find backward", Find("err", true), `{"op":"find","text":"err","backward":true}`},
		{"find clear", Find("", false), `{"op":"find"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Encode()
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.Error(t, Command{Op: "rm_rf"}.Validate())
	assert.Error(t, Command{Op: OpScrollLines}.Validate())
	assert.NoError(t, SelectAll().Validate())

	_, err := Command{Op: "eval", Text: "alert(1)"}.Encode()
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	cmd, err := Decode(`{"op":"find","text":"x","backward":true}`)
	require.NoError(t, err)
	assert.Equal(t, Find("x", true), cmd)

	_, err = Decode(`{"op":`)
	assert.Error(t, err)
	_, err = Decode(`{"op":"nope"}`)
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "scroll_page(-1)", ScrollPage(-1).String())
	assert.Equal(t, "paste(3 bytes)", Paste("abc").String())
	assert.Equal(t, "select_all", SelectAll().String())
}
