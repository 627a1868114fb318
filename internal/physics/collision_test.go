package physics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/voxel-stream/internal/vec"
)

// solidSet строит SolidChecker по перечню занятых блоков
func solidSet(blocks ...vec.Vec3) SolidChecker {
	set := make(map[vec.Vec3]bool, len(blocks))
	for _, b := range blocks {
		set[b] = true
	}
	return func(p vec.Vec3) bool { return set[p] }
}

func TestCanMoveToFreeSpace(t *testing.T) {
	collider := NewBoxCollider(1, 2)
	isSolid := solidSet(vec.Vec3{X: 5, Y: 0, Z: 5})

	assert.True(t, CanMoveToPosition(vec.Vec3{X: 0, Y: 0, Z: 0}, collider, isSolid))
	assert.False(t, CanMoveToPosition(vec.Vec3{X: 5, Y: 0, Z: 5}, collider, isSolid))
}

func TestColliderHeightChecked(t *testing.T) {
	collider := NewBoxCollider(1, 2)
	// Занят блок на уровне головы
	isSolid := solidSet(vec.Vec3{X: 3, Y: 11, Z: 3})

	assert.False(t, CanMoveToPosition(vec.Vec3{X: 3, Y: 10, Z: 3}, collider, isSolid),
		"коллайдер высотой 2 задевает блок над ногами")
	assert.True(t, CanMoveToPosition(vec.Vec3{X: 3, Y: 12, Z: 3}, collider, isSolid))
}

func TestWideColliderCorners(t *testing.T) {
	collider := NewBoxCollider(2, 1)
	// Занят угол зоны коллайдера
	isSolid := solidSet(vec.Vec3{X: 0, Y: 0, Z: 0}) // Угол (-half, +0)

	assert.False(t, CanMoveToPosition(vec.Vec3{X: 1, Y: 0, Z: 1}, collider, isSolid))
	assert.True(t, CanMoveToPosition(vec.Vec3{X: 3, Y: 0, Z: 3}, collider, isSolid))
}

func TestCollisionPointsCount(t *testing.T) {
	assert.Len(t, CollisionPoints(vec.Vec3{}, NewBoxCollider(1, 2)), 2,
		"узкий коллайдер — столбец по высоте")
	assert.Len(t, CollisionPoints(vec.Vec3{}, NewBoxCollider(2, 2)), 8,
		"широкий коллайдер — четыре угла на уровень")
}

func TestCheckBoxCollision(t *testing.T) {
	a := NewBoxCollider(2, 2)
	b := NewBoxCollider(2, 2)

	assert.True(t, CheckBoxCollision(vec.Vec3{}, a, vec.Vec3{X: 1, Y: 0, Z: 0}, b))
	assert.False(t, CheckBoxCollision(vec.Vec3{}, a, vec.Vec3{X: 5, Y: 0, Z: 0}, b))
	// Разнесены по высоте
	assert.False(t, CheckBoxCollision(vec.Vec3{}, a, vec.Vec3{X: 0, Y: 3, Z: 0}, b))
}
