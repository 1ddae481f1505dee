package model

// All lists the tables owned by the insights engine, in migration order.
func All() []interface{} {
	return []interface{}{
		&Product{},
		&ProductBatch{},
		&Category{},
		&Sale{},
		&Prediction{},
		&Notification{},
		&NotificationDedupKey{},
		&AlertSettings{},
	}
}
