package ingest

// recordSchema is the accepted shape of one engagement record on the wire.
// Sentiment may be a bare score or a {sentiment_type, sentiment_score}
// object; topics may arrive under topics, technologies or a legacy topic.
const recordSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["id", "customer", "date", "sentiment"],
  "properties": {
    "id": {
      "oneOf": [
        {"type": "string", "minLength": 1},
        {"type": "integer"}
      ]
    },
    "customer": {"type": "string", "minLength": 1},
    "date": {"type": "string", "minLength": 10},
    "notes": {"type": ["string", "null"]},
    "feedback": {"type": ["string", "null"]},
    "status": {"type": ["string", "null"]},
    "risk": {"type": ["boolean", "null"]},
    "sentiment": {
      "oneOf": [
        {"type": "number", "minimum": 0, "maximum": 1},
        {
          "type": "object",
          "required": ["sentiment_type"],
          "properties": {
            "sentiment_type": {"enum": ["positive", "neutral", "negative", "POSITIVE", "NEUTRAL", "NEGATIVE"]},
            "sentiment_score": {"type": ["number", "null"], "minimum": 0, "maximum": 1}
          }
        }
      ]
    },
    "topics": {"type": ["array", "null"], "items": {"type": "string"}},
    "technologies": {"type": ["array", "null"], "items": {"type": "string"}},
    "topic": {
      "oneOf": [
        {"type": "string"},
        {"type": "null"},
        {
          "type": "object",
          "required": ["topic"],
          "properties": {"topic": {"type": "string"}}
        }
      ]
    }
  }
}`

const recordSchemaURL = "https://engagement-intel.local/schemas/engagement.schema.json"
