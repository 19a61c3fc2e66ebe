package tools

// coordinatePattern matches "longitude,latitude" strings such as
// "116.481499,39.990755".
const coordinatePattern = `^-?[0-9]{1,3}(\.[0-9]+)?,-?[0-9]{1,2}(\.[0-9]+)?$`

func coordinateProperty(desc string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": desc,
		"pattern":     coordinatePattern,
	}
}

func routeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"origin":      coordinateProperty("origin coordinate, longitude,latitude"),
			"destination": coordinateProperty("destination coordinate, longitude,latitude"),
		},
		"required":             []any{"origin", "destination"},
		"additionalProperties": false,
	}
}

// MobilityDefinitions returns the tool surface of the mobility benchmark:
// POI resolution, routing for each travel mode, and info queries.
func MobilityDefinitions() []Definition {
	return []Definition{
		{
			Name:        "query_poi",
			Description: "Resolve a fuzzy place description to a precise POI with coordinates.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"keywords": map[string]any{"type": "string", "minLength": 1},
					"city":     map[string]any{"type": "string"},
				},
				"required":             []any{"keywords"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "search_around_poi",
			Description: "Search POIs around a coordinate within a radius.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location": coordinateProperty("center coordinate"),
					"keywords": map[string]any{"type": "string", "minLength": 1},
					"radius": map[string]any{
						"type":    "number",
						"minimum": 0,
						"maximum": 50000,
					},
				},
				"required":             []any{"location", "keywords"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "reverse_geocoding",
			Description: "Resolve a coordinate to a structured address.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"location": coordinateProperty("coordinate to resolve"),
				},
				"required":             []any{"location"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "driving_route",
			Description: "Plan a driving route between two coordinates.",
			Schema:      routeSchema(),
		},
		{
			Name:        "walking_route",
			Description: "Plan a walking route between two coordinates.",
			Schema:      routeSchema(),
		},
		{
			Name:        "bicycling_route",
			Description: "Plan a cycling route between two coordinates.",
			Schema:      routeSchema(),
		},
		{
			Name:        "transit_route",
			Description: "Plan a public transit route between two coordinates.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"origin":      coordinateProperty("origin coordinate"),
					"destination": coordinateProperty("destination coordinate"),
					"city":        map[string]any{"type": "string", "minLength": 1},
				},
				"required":             []any{"origin", "destination", "city"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "weather_query",
			Description: "Query current and forecast weather for a city.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"city": map[string]any{"type": "string", "minLength": 1},
				},
				"required":             []any{"city"},
				"additionalProperties": false,
			},
		},
		{
			Name:        "traffic_status",
			Description: "Query congestion status for a named road in a city.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"road_name": map[string]any{"type": "string", "minLength": 1},
					"city":      map[string]any{"type": "string", "minLength": 1},
				},
				"required":             []any{"road_name", "city"},
				"additionalProperties": false,
			},
		},
	}
}

// MobilityCatalog compiles the default mobility tool catalog. It panics
// on compile failure, which can only happen if the definitions above are
// edited into an invalid state.
func MobilityCatalog() *Catalog {
	c, err := NewCatalog(MobilityDefinitions()...)
	if err != nil {
		panic(err)
	}
	return c
}
