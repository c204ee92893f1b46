package chat

type ToolDefinition struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolDefinitions lists the local tools the agent may call. All of them are
// served directly from the service database.
var ToolDefinitions = []ToolDefinition{
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "search_knowledge_base",
			Description: "Search the restaurant knowledge base (menu, terrace, opening hours, policies, allergens, location).",
			Parameters: toolParams(
				map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The guest's question, rephrased as a search query.",
					},
				},
				[]string{"query"},
			),
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "lookup_reservation",
			Description: "Look up reservations by guest name (partial match) and/or date. Provide at least one. Cancelled and no-show bookings are never returned.",
			Parameters: toolParams(
				map[string]any{
					"guestName": map[string]any{
						"type":        "string",
						"description": "Full or partial guest name, case-insensitive.",
					},
					"date": map[string]any{
						"type":        "string",
						"description": "Reservation date in YYYY-MM-DD format.",
					},
				},
				[]string{},
			),
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "get_active_incidents",
			Description: "Get current service incidents and weather alerts affecting the restaurant (terrace closures, kitchen issues, private events).",
			Parameters:  toolParams(map[string]any{}, []string{}),
		},
	},
	{
		Type: "function",
		Function: ToolFunction{
			Name:        "check_waiting_list",
			Description: "Check the walk-in waiting list and queue positions for a given day.",
			Parameters: toolParams(
				map[string]any{
					"date": map[string]any{
						"type":        "string",
						"description": "Day to check in YYYY-MM-DD format.",
					},
				},
				[]string{"date"},
			),
		},
	},
}

func toolParams(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
