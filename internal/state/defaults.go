/*
Package state
File: defaults.go
Description:
    The empty opening document.
*/

package state

// StartDate is the first day of a new campaign.
var StartDate = Date{Day: 1, Month: 1, Year: 3025}

// NewDocument returns an empty company at StartDate with every collection
// allocated, so a fresh game passes Validate.
func NewDocument(name string, funds int64) Document {
	return Document{
		Version: CurrentVersion,
		Company: Company{
			Name:       name,
			Funds:      funds,
			Rating:     RatingGreen,
			Reputation: map[string]float64{},
		},
		Time:            Time{Day: StartDate.Day, Month: StartDate.Month, Year: StartDate.Year},
		Pilots:          []Pilot{},
		Mechs:           []Mech{},
		Contracts:       []Contract{},
		ActiveContracts: []ActiveContract{},
		Market: Market{
			LastContractRefresh: StartDate,
			PilotPool:           []Pilot{},
			MechListings:        []Mech{},
		},
	}
}
