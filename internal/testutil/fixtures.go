package testutil

import "github.com/udisondev/elemcore/internal/model"

// Fixtures содержит общие определения элементов и окружения,
// чтобы не дублировать их в тестах.
var Fixtures = struct {
	Fire  model.ElementDefinition
	Water model.ElementDefinition
	Ice   model.ElementDefinition
	Storm model.ElementDefinition // узкий диапазон, для проверки clamp

	// Overworld днём, ясно, полное здоровье
	Plains model.Environment
}{
	Fire:  model.ElementDefinition{ID: "core:fire", DisplayName: "Fire", MaxValue: 1000},
	Water: model.ElementDefinition{ID: "core:water", DisplayName: "Water", MaxValue: 100},
	Ice:   model.ElementDefinition{ID: "core:ice", DisplayName: "Ice", MaxValue: 100},
	Storm: model.ElementDefinition{ID: "core:storm", DisplayName: "Storm", MaxValue: 50},
	Plains: model.Environment{
		Biome:      "minecraft:plains",
		Dimension:  "minecraft:overworld",
		WorldTime:  6000,
		Difficulty: "normal",
		Health:     20,
		MaxHealth:  20,
	},
}
