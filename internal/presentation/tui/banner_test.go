package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestPrintBanner_Plain(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, termenv.Ascii)

	assert.NotContains(t, buf.String(), "\x1b[", "ascii profile carries no escape codes")
	assert.Equal(t, 7, strings.Count(buf.String(), "\n"))
}

func TestPrintBanner_Colored(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, termenv.TrueColor)

	assert.Contains(t, buf.String(), "\x1b[")
}
