package natsadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/depowered/culvertvision/internal/core/domain"
)

func TestSubjects(t *testing.T) {
	ev := domain.TileEvent{RunID: "r1", TileName: "15TXN689290", Status: domain.TileFailed}
	assert.Equal(t, "pointcloud.tile.r1.failed", TileSubject(ev))
	assert.Equal(t, "pointcloud.run.r1", RunSubject("r1"))
}

func TestFilters(t *testing.T) {
	assert.Equal(t, "pointcloud.tile.>", TileFilter(""))
	assert.Equal(t, "pointcloud.tile.r1.>", TileFilter("r1"))
	assert.Equal(t, "pointcloud.run.>", RunFilter(""))
	assert.Equal(t, "pointcloud.run.r1", RunFilter("r1"))
}
