package coordinator

import (
	"testing"

	"github.com/BackupTheBerlios/custom-burner-svn/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAddsIdleBurner(t *testing.T) {
	c, store := newTestCoordinator()

	c.Register("burner-a", "10.0.0.1", 2000, []string{"foo.iso"})

	burners := c.ListBurners()
	require.Len(t, burners, 1)
	assert.Equal(t, "burner-a", burners[0].Name)
	assert.False(t, burners[0].Busy)
	assert.Equal(t, 1, store.saves)
}

func TestRegisterReplacePolicyOverwritesImages(t *testing.T) {
	c, _ := newTestCoordinator()
	c.registrationPolicy = types.PolicyReplace

	c.Register("burner-a", "10.0.0.1", 2000, []string{"old.iso"})
	c.Register("burner-a", "10.0.0.1", 2001, []string{"new.iso"})

	images := c.ListAvailableImages()
	assert.Equal(t, []string{"new.iso"}, images)
}

func TestRegisterRejectPolicyKeepsExisting(t *testing.T) {
	c, _ := newTestCoordinator()
	c.registrationPolicy = types.PolicyReject

	c.Register("burner-a", "10.0.0.1", 2000, []string{"old.iso"})
	c.Register("burner-a", "10.0.0.1", 2001, []string{"new.iso"})

	images := c.ListAvailableImages()
	assert.Equal(t, []string{"old.iso"}, images)
}

func TestForgetRemovesBurner(t *testing.T) {
	c, _ := newTestCoordinator()
	c.Register("burner-a", "10.0.0.1", 2000, []string{"foo.iso"})

	c.Forget("burner-a")

	assert.Empty(t, c.ListBurners())
}

func TestListAvailableImagesUnionsAcrossBurners(t *testing.T) {
	c, _ := newTestCoordinator()
	c.Register("burner-a", "10.0.0.1", 2000, []string{"a.iso", "shared.iso"})
	c.Register("burner-b", "10.0.0.2", 2000, []string{"b.iso", "shared.iso"})

	images := c.ListAvailableImages()
	assert.Equal(t, []string{"a.iso", "b.iso", "shared.iso"}, images)
}
