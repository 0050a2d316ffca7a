package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocator_Selector(t *testing.T) {
	tests := []struct {
		name string
		loc  Locator
		want string
	}{
		{"xpath", XPath("//button[@title='Dashboard Pendency']"), "xpath=//button[@title='Dashboard Pendency']"},
		{"css", CSS("a.ui-dialog-titlebar-close"), "css=a.ui-dialog-titlebar-close"},
		{"id with colon", ID("workbench_tabview:idViewDoc"), `css=[id="workbench_tabview:idViewDoc"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.loc.Selector())
		})
	}
}

func TestLocator_String(t *testing.T) {
	assert.Equal(t, "id:j_idt45", ID("j_idt45").String())
	assert.Equal(t, "home button", ID("j_idt45").Named("home button").String())
	assert.True(t, Locator{}.IsZero())
	assert.False(t, CSS("a").IsZero())
}
