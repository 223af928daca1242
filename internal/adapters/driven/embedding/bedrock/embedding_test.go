package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/core/domain"
)

type fakeInvoker struct {
	inputs []*bedrockruntime.InvokeModelInput
	err    error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput,
	_ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	var req titanRequest
	if err := json.Unmarshal(in.Body, &req); err != nil {
		return nil, err
	}
	vec := make([]float32, req.Dimensions)
	vec[len(req.InputText)%req.Dimensions] = 1
	body, _ := json.Marshal(titanResponse{Embedding: vec})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func TestNewWithClient_Defaults(t *testing.T) {
	svc := newWithClient(Config{Dimensions: 3072}, &fakeInvoker{})
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.Equal(t, domain.EmbeddingProviderBedrock, svc.Provider())
}

func TestEmbedBatch(t *testing.T) {
	fake := &fakeInvoker{}
	svc := newWithClient(Config{Dimensions: 256, RequestsPerSecond: 1000, Burst: 10}, fake)

	embs, err := svc.EmbedBatch(context.Background(), []string{"a", "bb"})
	require.NoError(t, err)
	require.Len(t, embs, 2)
	assert.Len(t, embs[0].Vector, 256)
	assert.Equal(t, float32(1), embs[1].Vector[2])
	assert.Equal(t, domain.EmbeddingProviderBedrock, embs[0].Provider)

	require.Len(t, fake.inputs, 2)
	assert.Equal(t, DefaultModel, aws.ToString(fake.inputs[0].ModelId))
	var req titanRequest
	require.NoError(t, json.Unmarshal(fake.inputs[1].Body, &req))
	assert.Equal(t, "bb", req.InputText)
	assert.True(t, req.Normalize)
	assert.Equal(t, 256, req.Dimensions)
}

func TestEmbed_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"throttled", &types.ThrottlingException{Message: aws.String("slow down")}, domain.ErrRateLimited},
		{"denied", &types.AccessDeniedException{Message: aws.String("no")}, domain.ErrConfiguration},
		{"invalid", &types.ValidationException{Message: aws.String("bad")}, domain.ErrPermanent},
		{"network", errors.New("dial tcp: timeout"), domain.ErrEmbeddingUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newWithClient(Config{RequestsPerSecond: 1000}, &fakeInvoker{err: tt.err})
			_, err := svc.Embed(context.Background(), "text")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPing(t *testing.T) {
	svc := newWithClient(Config{RequestsPerSecond: 1000}, &fakeInvoker{})
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
