package budget

// Tier — уровень давления ресурсов
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
	TierCritical
)

// String возвращает строковое представление уровня
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "Low"
	case TierMedium:
		return "Medium"
	case TierHigh:
		return "High"
	case TierCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// RadiusPenalty возвращает, на сколько чанков ужимается радиус загрузки
// на этом уровне давления
func (t Tier) RadiusPenalty() int {
	switch t {
	case TierMedium:
		return 1
	case TierHigh:
		return 2
	case TierCritical:
		return 4
	default:
		return 0
	}
}

// LODBias возвращает сдвиг выбора уровня детализации в сторону грубых
// мешей на этом уровне давления
func (t Tier) LODBias() int {
	switch t {
	case TierHigh:
		return 1
	case TierCritical:
		return 2
	default:
		return 0
	}
}
