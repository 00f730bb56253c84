package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/smithy-go/middleware"
)

// stubClient returns a real DynamoDB client whose every call is answered by
// respond before anything is signed or sent. respond receives the operation
// input the repository built.
func stubClient(t *testing.T, respond func(input interface{}) (interface{}, error)) *dynamodb.Client {
	t.Helper()
	return dynamodb.New(dynamodb.Options{
		Region:      "us-east-1",
		Credentials: aws.AnonymousCredentials{},
		APIOptions: []func(*middleware.Stack) error{
			func(stack *middleware.Stack) error {
				return stack.Initialize.Add(middleware.InitializeMiddlewareFunc("stubResponse",
					func(_ context.Context, in middleware.InitializeInput, _ middleware.InitializeHandler) (middleware.InitializeOutput, middleware.Metadata, error) {
						out, err := respond(in.Parameters)
						return middleware.InitializeOutput{Result: out}, middleware.Metadata{}, err
					}), middleware.Before)
			},
		},
	})
}

// recorder captures every input and replays canned answers in order.
type recorder struct {
	inputs  []interface{}
	answers []answer
}

type answer struct {
	out interface{}
	err error
}

func (r *recorder) respond(input interface{}) (interface{}, error) {
	r.inputs = append(r.inputs, input)
	if len(r.answers) == 0 {
		return nil, errors.New("unexpected DynamoDB call")
	}
	a := r.answers[0]
	r.answers = r.answers[1:]
	return a.out, a.err
}
