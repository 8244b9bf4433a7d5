package service

// challengeWords is the fixed pool the ownership challenge draws from:
// fruits and vegetables, three distinct picks per challenge.
var challengeWords = []string{
	"apple", "banana", "cherry", "grape", "kiwi", "lemon", "mango",
	"melon", "orange", "papaya", "peach", "pear", "pineapple", "plum",
	"strawberry", "watermelon",
	"broccoli", "cabbage", "carrot", "celery", "cucumber", "eggplant",
	"lettuce", "onion", "pepper", "potato", "pumpkin", "radish",
	"spinach", "tomato", "turnip", "zucchini",
}

const challengeWordCount = 3
