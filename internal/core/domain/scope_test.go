package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/fab/internal/core/domain"
)

func TestScope_TargetShadowsGlobal(t *testing.T) {
	scope := domain.NewGlobalScope([]domain.GlobalVar{
		{Name: "CC", Raw: "gcc"},
		{Name: "CFLAGS", Raw: "-O2"},
	}, false)

	target := scope.ForTarget(map[string]string{"CC": "clang"})

	v, ok := target.Lookup("CC")
	assert.True(t, ok)
	assert.Equal(t, "clang", v)

	v, ok = target.Lookup("CFLAGS")
	assert.True(t, ok)
	assert.Equal(t, "-O2", v)

	// The target layer never leaks back into the global scope.
	v, _ = scope.Lookup("CC")
	assert.Equal(t, "gcc", v)
}

func TestScope_LaterAssignmentWins(t *testing.T) {
	scope := domain.NewGlobalScope([]domain.GlobalVar{
		{Name: "CC", Raw: "gcc"},
		{Name: "CC", Raw: "clang"},
	}, false)

	v, _ := scope.Lookup("CC")
	assert.Equal(t, "clang", v)
}

func TestScope_EnvFallback(t *testing.T) {
	t.Setenv("FAB_TEST_SCOPE_VAR", "from-env")

	scope := domain.NewGlobalScope(nil, true)
	v, ok := scope.Lookup("FAB_TEST_SCOPE_VAR")
	assert.True(t, ok)
	assert.Equal(t, "from-env", v)

	noFallback := domain.NewGlobalScope(nil, false)
	_, ok = noFallback.Lookup("FAB_TEST_SCOPE_VAR")
	assert.False(t, ok)
}

func TestScope_ExportedNames(t *testing.T) {
	scope := domain.NewGlobalScope([]domain.GlobalVar{
		{Name: "PUBLIC", Raw: "1", Exported: true},
		{Name: "PRIVATE", Raw: "2"},
	}, false)

	assert.Equal(t, []string{"PUBLIC"}, scope.ExportedNames())
}
