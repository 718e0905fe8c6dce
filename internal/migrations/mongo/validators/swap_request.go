package validators

import "go.mongodb.org/mongo-driver/bson"

var SwapRequestValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"requester_id",
			"target_user_id",
			"requester_slot_id",
			"target_slot_id",
			"pair_key",
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

			"requester_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"target_user_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"requester_slot_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"target_slot_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			// Canonical unordered pair: "<smaller id>:<larger id>".
			"pair_key": bson.M{
				"bsonType":  "string",
				"minLength": 49,
				"maxLength": 49,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"PENDING",
					"ACCEPTED",
					"REJECTED",
					"CANCELLED",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},

			"responded_at": bson.M{
				"bsonType": []string{"date", "null"},
			},
		},
	},
}
