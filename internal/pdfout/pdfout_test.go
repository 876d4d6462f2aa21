package pdfout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputName(t *testing.T) {
	assert.Equal(t, "0-scan.pdf", OutputName(0, "scan.pdf"))
	assert.Equal(t, "12-batch 7.pdf", OutputName(12, "batch 7.pdf"))
}

func TestSelectorsAreOneBased(t *testing.T) {
	assert.Equal(t, []string{"1", "3", "8"}, selectors([]int{0, 2, 7}))
	assert.Empty(t, selectors(nil))
}
