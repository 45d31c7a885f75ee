// Request and response shapes exchanged with callers of the engine.
package types

// Rearrangement and placement actions.
const (
	ActionPlace  = "place"
	ActionMove   = "move"
	ActionRemove = "remove"
)

// Retrieval step actions.
const (
	ActionSetAside  = "setAside"
	ActionRetrieve  = "retrieve"
	ActionPlaceBack = "placeBack"
)

// PlacementRequest asks the engine to stow a batch of items. Containers
// listed here are registered if they are not known yet.
type PlacementRequest struct {
	Items      []Item      `json:"items"`
	Containers []Container `json:"containers"`
}

// Placement is an item's committed location.
type Placement struct {
	ItemID      string   `json:"itemId"`
	ContainerID string   `json:"containerId"`
	Position    Position `json:"position"`
}

// RearrangementStep is one physical action of a rearrangement plan.
type RearrangementStep struct {
	Step          int       `json:"step"`
	Action        string    `json:"action"`
	ItemID        string    `json:"itemId"`
	FromContainer string    `json:"fromContainer,omitempty"`
	FromPosition  *Position `json:"fromPosition,omitempty"`
	ToContainer   string    `json:"toContainer,omitempty"`
	ToPosition    *Position `json:"toPosition,omitempty"`
}

// UnplacedItem reports an item the engine could not stow.
type UnplacedItem struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
}

// PlacementResponse reports the outcome of a PlacementRequest. Success is
// true when every item in the batch ended up stowed.
type PlacementResponse struct {
	Success        bool                `json:"success"`
	Placements     []Placement         `json:"placements"`
	Rearrangements []RearrangementStep `json:"rearrangements"`
	Unplaced       []UnplacedItem      `json:"unplaced,omitempty"`
}

// RetrievalStep is one physical action of a retrieval plan.
type RetrievalStep struct {
	Step     int    `json:"step"`
	Action   string `json:"action"`
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
}

// RetrieveRequest takes an item out of its container.
type RetrieveRequest struct {
	ItemID    string `json:"itemId"`
	UserID    string `json:"userId"`
	Timestamp Date   `json:"timestamp"`
}

// RetrieveResponse reports whether the retrieval was committed.
type RetrieveResponse struct {
	Success bool            `json:"success"`
	Steps   []RetrievalStep `json:"retrievalSteps,omitempty"`
}

// PlaceRequest stows an item at a caller-chosen position.
type PlaceRequest struct {
	ItemID      string   `json:"itemId"`
	UserID      string   `json:"userId"`
	Timestamp   Date     `json:"timestamp"`
	ContainerID string   `json:"containerId"`
	Position    Position `json:"position"`
}

// PlaceResponse reports whether the placement was committed.
type PlaceResponse struct {
	Success bool `json:"success"`
}

// SearchRequest looks an item up by id or, when ItemID is empty, by name.
type SearchRequest struct {
	ItemID   string `json:"itemId,omitempty"`
	ItemName string `json:"itemName,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// FoundItem describes where a searched item is.
type FoundItem struct {
	ItemID      string   `json:"itemId"`
	Name        string   `json:"name"`
	ContainerID string   `json:"containerId"`
	Zone        string   `json:"zone"`
	Position    Position `json:"position"`
}

// SearchResponse carries the item's location and the steps to retrieve it.
type SearchResponse struct {
	Success        bool            `json:"success"`
	Found          bool            `json:"found"`
	Item           *FoundItem      `json:"item,omitempty"`
	RetrievalSteps []RetrievalStep `json:"retrievalSteps"`
}

// WasteItem is an item classified as waste.
type WasteItem struct {
	ItemID      string    `json:"itemId"`
	Name        string    `json:"name"`
	Reason      string    `json:"reason"`
	ContainerID string    `json:"containerId,omitempty"`
	Position    *Position `json:"position,omitempty"`
}

// WasteIdentifyResponse lists every waste item.
type WasteIdentifyResponse struct {
	Success    bool        `json:"success"`
	WasteItems []WasteItem `json:"wasteItems"`
}

// ReturnPlanRequest asks for a disposal plan into one undocking container.
type ReturnPlanRequest struct {
	UndockingContainerID string  `json:"undockingContainerId"`
	UndockingDate        Date    `json:"undockingDate"`
	MaxWeight            float64 `json:"maxWeight"`
}

// ReturnStep moves one waste item into the undocking container.
type ReturnStep struct {
	Step          int    `json:"step"`
	ItemID        string `json:"itemId"`
	ItemName      string `json:"itemName"`
	FromContainer string `json:"fromContainer"`
	ToContainer   string `json:"toContainer"`
}

// ReturnItem is a waste item accepted into the manifest.
type ReturnItem struct {
	ItemID string `json:"itemId"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// ReturnManifest summarises what leaves with the undocking container.
type ReturnManifest struct {
	UndockingContainerID string       `json:"undockingContainerId"`
	UndockingDate        Date         `json:"undockingDate"`
	ReturnItems          []ReturnItem `json:"returnItems"`
	ExcludedItems        []ReturnItem `json:"excludedItems"`
	TotalVolume          float64      `json:"totalVolume"`
	TotalWeight          float64      `json:"totalWeight"`
}

// ReturnPlanResponse is the disposal plan.
type ReturnPlanResponse struct {
	Success        bool            `json:"success"`
	ReturnPlan     []ReturnStep    `json:"returnPlan"`
	RetrievalSteps []RetrievalStep `json:"retrievalSteps"`
	ReturnManifest ReturnManifest  `json:"returnManifest"`
}

// CompleteUndockingRequest detaches every item in the undocking container.
type CompleteUndockingRequest struct {
	UndockingContainerID string `json:"undockingContainerId"`
	Timestamp            Date   `json:"timestamp"`
}

// CompleteUndockingResponse reports how many items left.
type CompleteUndockingResponse struct {
	Success      bool `json:"success"`
	ItemsRemoved int  `json:"itemsRemoved"`
}

// ItemRef names an item by id or, when ItemID is empty, by name.
type ItemRef struct {
	ItemID string `json:"itemId,omitempty"`
	Name   string `json:"name,omitempty"`
}

// SimulateRequest advances mission time by NumOfDays or up to ToTimestamp,
// using the listed items once per simulated day.
type SimulateRequest struct {
	NumOfDays           int       `json:"numOfDays,omitempty"`
	ToTimestamp         *Date     `json:"toTimestamp,omitempty"`
	ItemsToBeUsedPerDay []ItemRef `json:"itemsToBeUsedPerDay"`
}

// UsedItem reports an item used during a simulation.
type UsedItem struct {
	ItemID        string `json:"itemId"`
	Name          string `json:"name"`
	RemainingUses *int   `json:"remainingUses"`
}

// SimulationChanges lists the state transitions of a simulation.
type SimulationChanges struct {
	ItemsUsed          []UsedItem `json:"itemsUsed"`
	ItemsExpired       []ItemRef  `json:"itemsExpired"`
	ItemsDepletedToday []ItemRef  `json:"itemsDepletedToday"`
}

// SimulateResponse reports the new mission date and what changed.
type SimulateResponse struct {
	Success bool              `json:"success"`
	NewDate Date              `json:"newDate"`
	Changes SimulationChanges `json:"changes"`
}
