package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"owner_id",
			"title",
			"date",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"description": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"start": bson.M{
				"bsonType": "string",
				"pattern":  `^([01][0-9]|2[0-3]):[0-5][0-9]$`,
			},

			"end": bson.M{
				"bsonType": "string",
				"pattern":  `^([01][0-9]|2[0-3]):[0-5][0-9]$`,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"SWAPPABLE",
					"BUSY",
					"SWAP_PENDING",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
