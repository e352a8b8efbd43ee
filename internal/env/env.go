package env

import (
	"os"
)

const (
	AWSRegion        = "AWS_REGION"
	AWSID            = "AWS_ID"
	AWSSecret        = "AWS_SECRET"
	AWSToken         = "AWS_TOKEN"
	DynamoDBEndpoint = "DYNAMODB_ENDPOINT"
	StaffSecretKey   = "STAFF_SECRET"
	CustomerSecret   = "CUSTOMER_SECRET"
	ChatRedisURL     = "CHAT_REDIS_URL"
	ChatRedisPass    = "CHAT_REDIS_PASS"
	AssistantURL     = "ASSISTANT_URL"
	AssistantKey     = "ASSISTANT_KEY"
	WebUrl           = "WEB_URL"
)

// Required lists the variables every binary validates at startup via
// CheckRequired. Importing this package never panics, so packages under test
// do not need a configured environment.
var Required = []string{
	AWSRegion,
	AWSID,
	AWSSecret,
	StaffSecretKey,
	CustomerSecret,
	ChatRedisURL,
}

func Get(key string) string {
	return os.Getenv(key)
}

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("env: required environment variable not set: " + key)
	}
	return val
}

func CheckRequired() {
	for _, key := range Required {
		MustGet(key)
	}
}
