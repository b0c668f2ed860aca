package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"business_id",
			"provider_id",
			"date",
			"time",
			"service_snapshot",
			"client_name",
			"status",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"business_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"provider_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},

			"service_snapshot": bson.M{
				"bsonType": "object",
				"required": []string{"name", "duration"},
				"properties": bson.M{
					"name": bson.M{
						"bsonType":  "string",
						"minLength": 1,
						"maxLength": 100,
					},
					"duration": bson.M{
						"bsonType": "int",
						"minimum":  5,
						"maximum":  480,
					},
					"price": bson.M{
						"bsonType": "int",
						"minimum":  0,
					},
					"buffer_before": bson.M{
						"bsonType": "int",
						"minimum":  0,
						"maximum":  240,
					},
					"buffer_after": bson.M{
						"bsonType": "int",
						"minimum":  0,
						"maximum":  240,
					},
				},
			},

			"client_name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"confirmed",
					"arrived",
					"completed",
					"no-show",
					"cancelled",
				},
			},

			"lead_source": bson.M{
				"bsonType": "string",
				"enum": []string{
					"dashboard",
					"provider",
					"chat",
					"ecommerce",
				},
			},

			"version": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
