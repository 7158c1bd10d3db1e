package models

// All returns every model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&Permission{}, &Profile{}, &User{},
		&Feature{}, &Client{}, &Product{},
		&ClientRequest{}, &ClientRelationship{},
		&ClientRequirement{}, &RequirementImage{},
		&Quotation{}, &QuotationItem{},
		&Agreement{}, &PaymentTerm{},
	}
}
