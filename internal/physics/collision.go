package physics

import (
	"github.com/annel0/voxel-stream/internal/vec"
)

// SolidChecker сообщает, занят ли блок в мировых координатах.
// Незагруженные чанки считаются сплошными: сущность не должна
// проваливаться в мир, который ещё не сгенерирован.
type SolidChecker func(vec.Vec3) bool

// BoxCollider представляет прямоугольный коллайдер сущности в блоках
type BoxCollider struct {
	Width  int // По осям X и Z
	Height int // По оси Y
}

// NewBoxCollider создаёт новый коллайдер с указанными размерами
func NewBoxCollider(width, height int) *BoxCollider {
	return &BoxCollider{
		Width:  width,
		Height: height,
	}
}

// CheckBoxCollision проверяет пересечение двух коллайдеров
func CheckBoxCollision(pos1 vec.Vec3, collider1 *BoxCollider, pos2 vec.Vec3, collider2 *BoxCollider) bool {
	half1 := collider1.Width / 2
	half2 := collider2.Width / 2

	return pos1.X+half1 > pos2.X-half2 &&
		pos1.X-half1 < pos2.X+half2 &&
		pos1.Z+half1 > pos2.Z-half2 &&
		pos1.Z-half1 < pos2.Z+half2 &&
		pos1.Y+collider1.Height > pos2.Y &&
		pos1.Y < pos2.Y+collider2.Height
}

// CollisionPoints возвращает блоки, которые занимает коллайдер в позиции pos.
// pos — блок под нижним центром коллайдера.
func CollisionPoints(pos vec.Vec3, collider *BoxCollider) []vec.Vec3 {
	// Для коллайдера 1x1 достаточно столбца блоков по высоте
	if collider.Width <= 1 {
		points := make([]vec.Vec3, 0, collider.Height)
		for y := 0; y < collider.Height; y++ {
			points = append(points, vec.Vec3{X: pos.X, Y: pos.Y + y, Z: pos.Z})
		}
		return points
	}

	half := collider.Width / 2
	points := make([]vec.Vec3, 0, 4*collider.Height)
	for y := 0; y < collider.Height; y++ {
		points = append(points,
			vec.Vec3{X: pos.X - half, Y: pos.Y + y, Z: pos.Z - half},
			vec.Vec3{X: pos.X + half - 1, Y: pos.Y + y, Z: pos.Z - half},
			vec.Vec3{X: pos.X - half, Y: pos.Y + y, Z: pos.Z + half - 1},
			vec.Vec3{X: pos.X + half - 1, Y: pos.Y + y, Z: pos.Z + half - 1},
		)
	}
	return points
}

// CanMoveToPosition проверяет, может ли сущность с указанным коллайдером
// переместиться в позицию newPos. isSolid — запрос занятости блока.
func CanMoveToPosition(newPos vec.Vec3, collider *BoxCollider, isSolid SolidChecker) bool {
	for _, point := range CollisionPoints(newPos, collider) {
		if isSolid(point) {
			return false
		}
	}
	return true
}
