package block

// BlockID представляет идентификатор типа блока
type BlockID uint16

// Константы ID блоков
const (
	// Базовые типы блоков
	AirBlockID    BlockID = iota // 0, никогда не хранится в чанке
	StoneBlockID                 // 1
	DirtBlockID                  // 2
	GrassBlockID                 // 3
	SandBlockID                  // 4
	WaterBlockID                 // 5

	// Растительность (начиная со 100, оставляем промежутки для расширения)
	WoodBlockID   BlockID = 100 // Ствол дерева
	LeavesBlockID BlockID = 101 // Листва
)

// Def описывает статические свойства типа блока.
// Определения приходят из контентной конфигурации; поведение блоков
// (тики, взаимодействия) сюда не входит.
type Def struct {
	ID          BlockID `yaml:"id"`
	Name        string  `yaml:"name"`
	Transparent bool    `yaml:"transparent"`
	Hardness    float64 `yaml:"hardness"`
}

var registry = make(map[BlockID]Def)

// Register добавляет определение блока в регистр.
// Повторная регистрация перезаписывает предыдущее определение.
func Register(def Def) {
	registry[def.ID] = def
}

// Get возвращает определение для указанного ID
func Get(id BlockID) (Def, bool) {
	def, exists := registry[id]
	return def, exists
}

// IsValidBlockID проверяет, зарегистрирован ли ID
func IsValidBlockID(id BlockID) bool {
	_, exists := registry[id]
	return exists
}

// IsTransparent возвращает true для воздуха, незарегистрированных
// и прозрачных блоков: сквозь них видны грани соседей
func IsTransparent(id BlockID) bool {
	if id == AirBlockID {
		return true
	}
	def, exists := registry[id]
	if !exists {
		return true
	}
	return def.Transparent
}

// IsSolid возвращает true для блоков, участвующих в коллизиях
func IsSolid(id BlockID) bool {
	if id == AirBlockID {
		return false
	}
	def, exists := registry[id]
	if !exists {
		return false
	}
	// Вода прозрачна и не твёрдая; остальные зарегистрированные — твёрдые
	return id != WaterBlockID && def.Hardness > 0
}

// RegisterDefaults заполняет регистр встроенным набором блоков.
// Вызывается при старте; YAML-определения могут дополнить или
// перекрыть их позже.
func RegisterDefaults() {
	defaults := []Def{
		{ID: StoneBlockID, Name: "stone", Transparent: false, Hardness: 3.0},
		{ID: DirtBlockID, Name: "dirt", Transparent: false, Hardness: 1.0},
		{ID: GrassBlockID, Name: "grass", Transparent: false, Hardness: 1.0},
		{ID: SandBlockID, Name: "sand", Transparent: false, Hardness: 0.8},
		{ID: WaterBlockID, Name: "water", Transparent: true, Hardness: 0.0},
		{ID: WoodBlockID, Name: "wood", Transparent: false, Hardness: 2.0},
		{ID: LeavesBlockID, Name: "leaves", Transparent: true, Hardness: 0.3},
	}
	for _, def := range defaults {
		Register(def)
	}
}
