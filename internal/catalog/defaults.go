package catalog

// Default returns the built-in catalog used when no catalog file is configured.
func Default() *Catalog {
	c, err := New(defaultDefinitions())
	if err != nil {
		panic(err)
	}
	return c
}

func defaultDefinitions() []Definition {
	buildingMaterials := []string{"wood", "steel", "stone"}

	return []Definition{
		{
			ID: "partition_walls", Label: "partition walls",
			SpaceCost: 6, BedCountOffset: 1,
			ImpressivenessLevel: 1,
			Costs:               []CostItem{{Resource: "components", Count: 2}},
			MaterialCost:        40, AllowedMaterials: buildingMaterials,
		},
		{
			ID: "double_bunks", Label: "double bunks",
			SpaceCost: 2, SpaceCostPerBed: 1, BedCountOffset: 1, BedCountMultiplier: 2,
			OnePerBed:        true,
			RequiredUpgrades: []string{"partition_walls"},
			MaterialCost:     25, AllowedMaterials: buildingMaterials,
		},
		{
			ID: "barracks_layout", Label: "barracks layout", Category: CategoryBarracks,
			SpaceCost: 4, BedCountOffset: 2,
			Costs: []CostItem{{Resource: "wood", Count: 60}},
		},
		{
			ID: "insulated_walls", Label: "insulated walls", Category: CategoryClimate,
			SpaceCost:            3,
			InsulationAdjustment: 10, InsulationTarget: 18,
			Costs: []CostItem{{Resource: "cloth", Count: 30}, {Resource: "wood", Count: 20}},
		},
		{
			ID: "wood_stove", Label: "wood stove", Category: CategoryClimate,
			SpaceCost: 2, FuelPerBed: 2,
			HeatOffset: 12, MaxHeatCap: 24,
			Costs: []CostItem{{Resource: "steel", Count: 45}},
		},
		{
			ID: "evaporative_cooler", Label: "evaporative cooler", Category: CategoryClimate,
			SpaceCost: 2, FuelPerBed: 1,
			CoolOffset: 8, MinCoolCap: 17,
			Costs: []CostItem{{Resource: "steel", Count: 30}, {Resource: "components", Count: 1}},
		},
		{
			ID: "heat_pump", Label: "heat pump", Category: CategoryClimate,
			SpaceCost: 3, RequiresPower: true, BasePowerConsumption: 200,
			SmartMode: SmartDualMode, SmartHeatEfficiency: 10, SmartCoolEfficiency: 8,
			RequiredUpgrades: []string{"insulated_walls"},
			Costs:            []CostItem{{Resource: "steel", Count: 70}, {Resource: "components", Count: 3}},
		},
		{
			ID: "space_heater", Label: "space heater", Category: CategoryClimate,
			SpaceCost: 1, RequiresPower: true, BasePowerConsumption: 150,
			SmartMode: SmartHeaterOnly, SmartHeatEfficiency: 12,
			Costs: []CostItem{{Resource: "steel", Count: 25}, {Resource: "components", Count: 1}},
		},
		{
			ID: "reading_lamps", Label: "reading lamps", Category: CategoryLuxury,
			SpaceCost: 0.5, RequiresPower: true, BasePowerConsumption: 30,
			OnePerBed: true, ImpressivenessLevel: 1,
			Costs: []CostItem{{Resource: "steel", Count: 10}},
		},
		{
			ID: "soundproofing", Label: "soundproofing", Category: CategoryLuxury,
			SpaceCost: 2, RemoveSleepDisturbed: true,
			Costs: []CostItem{{Resource: "cloth", Count: 40}},
		},
		{
			ID: "fine_furnishings", Label: "fine furnishings", Category: CategoryLuxury,
			SpaceCost: 3, ImpressivenessLevel: 2,
			RequiredUpgrades: []string{"partition_walls"},
			MaterialCost:     50, AllowedMaterials: []string{"wood", "marble", "gold"},
		},
		{
			ID: "dehumidifier", Label: "dehumidifier",
			SpaceCost: 1, RequiresPower: true, BasePowerConsumption: 80,
			HostKinds:           []string{"basement"},
			ImpressivenessLevel: 1,
			Costs:               []CostItem{{Resource: "steel", Count: 20}, {Resource: "components", Count: 1}},
		},
	}
}
