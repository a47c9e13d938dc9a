package model

import "time"

// SlotCandidate вычисленный слот, не хранится в базе
type SlotCandidate struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}
