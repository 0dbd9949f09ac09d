package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/logging"
)

type fakeDependency struct {
	name      string
	dependsOn []string
	failures  int
	log       *[]string
}

func (d *fakeDependency) GetName() string     { return d.name }
func (d *fakeDependency) DependsOn() []string { return d.dependsOn }

func (d *fakeDependency) Start(context.Context) error {
	if d.failures > 0 {
		d.failures--
		return errors.New(d.name + " unavailable")
	}
	*d.log = append(*d.log, "start:"+d.name)
	return nil
}

func (d *fakeDependency) Stop(context.Context) error {
	*d.log = append(*d.log, "stop:"+d.name)
	return nil
}

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(logging.NewNopLogger(), maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func TestStart_DependencyOrder(t *testing.T) {
	var log []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "http", dependsOn: []string{"database"}, log: &log})
	s.AddDependency(&fakeDependency{name: "database", log: &log})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database", "start:http"}, log)
	assert.Equal(t, StatusStarted, s.Status("http"))

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"start:database", "start:http", "stop:http", "stop:database"}, log)
	assert.Equal(t, StatusStopped, s.Status("database"))
}

func TestStart_RetriesUntilSuccess(t *testing.T) {
	var log []string
	s := newTestStartup(3)
	s.AddDependency(&fakeDependency{name: "database", failures: 2, log: &log})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start:database"}, log)
}

func TestStart_GivesUp(t *testing.T) {
	var log []string
	s := newTestStartup(2)
	s.AddDependency(&fakeDependency{name: "database", failures: 5, log: &log})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
	assert.Equal(t, StatusFailed, s.Status("database"))
}

func TestStart_UnknownDependency(t *testing.T) {
	var log []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "http", dependsOn: []string{"redis"}, log: &log})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown startup dependency 'redis'")
}

func TestStart_Cycle(t *testing.T) {
	var log []string
	s := newTestStartup(1)
	s.AddDependency(&fakeDependency{name: "a", dependsOn: []string{"b"}, log: &log})
	s.AddDependency(&fakeDependency{name: "b", dependsOn: []string{"a"}, log: &log})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}
