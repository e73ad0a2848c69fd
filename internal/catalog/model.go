package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Published service categories. Technicians register under one of these.
const (
	CategoryACHVAC         = "AC & HVAC Maintenance"
	CategoryCarpentry      = "Carpentry Services"
	CategoryElectrical     = "Electrical Services"
	CategoryHouseCleaning  = "House Cleaning Services"
	CategoryMicrowave      = "Microwave Repair"
	CategoryPainting       = "Painting Services"
	CategoryPlumbing       = "Plumbing Services"
	CategoryRefrigerator   = "Refrigerator Repair"
	CategoryWashingMachine = "Washing Machine Repair"
	CategoryWaterPurifier  = "Water Purifier Repair"
)

var categories = []string{
	CategoryACHVAC,
	CategoryCarpentry,
	CategoryElectrical,
	CategoryHouseCleaning,
	CategoryMicrowave,
	CategoryPainting,
	CategoryPlumbing,
	CategoryRefrigerator,
	CategoryWashingMachine,
	CategoryWaterPurifier,
}

// Service is one entry of the catalog.
type Service struct {
	SID             int     `json:"SID"`
	ServiceName     string  `json:"serviceName"`
	ServiceCategory string  `json:"serviceCategory"`
	Description     string  `json:"description,omitempty"`
	Details         Details `json:"details"`
}

// Details is either a single price or a price per variant.
// On the wire it is a number or an object of numbers.
type Details struct {
	Price    *float64
	Variants map[string]float64
}

func (d Details) MarshalJSON() ([]byte, error) {
	if d.Price != nil {
		return json.Marshal(*d.Price)
	}
	if d.Variants == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.Variants)
}

func (d *Details) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return errors.New("details: missing")
	}
	if b[0] == '{' {
		var v map[string]float64
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		d.Price, d.Variants = nil, v
		return nil
	}
	var p float64
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	d.Price, d.Variants = &p, nil
	return nil
}
