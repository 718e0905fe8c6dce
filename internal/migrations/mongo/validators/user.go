package validators

import "go.mongodb.org/mongo-driver/bson"

var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"email",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"email": bson.M{
				"bsonType": "string",
				"pattern":  `^[^@\s]+@[^@\s]+\.[^@\s]+$`,
			},

			"task_ids": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType":  "string",
					"minLength": 24,
					"maxLength": 24,
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
