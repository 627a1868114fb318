package block

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// blockFile — формат YAML-файла с определениями блоков
type blockFile struct {
	Blocks []Def `yaml:"blocks"`
}

// LoadYAMLBlocks читает определения блоков из YAML-файла и регистрирует их.
// Файл может дополнять или перекрывать встроенные определения.
// Отсутствие файла — не ошибка для вызывающего (проверяется через os.IsNotExist).
func LoadYAMLBlocks(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var bf blockFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return fmt.Errorf("разбор определений блоков %s: %w", path, err)
	}

	for _, def := range bf.Blocks {
		if def.ID == AirBlockID {
			// Воздух не материализуется и не переопределяется
			continue
		}
		Register(def)
	}

	return nil
}
