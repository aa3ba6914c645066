package service

import "context"

type testTxRepos struct {
	topics        TopicRepositoryInterface
	patches       KnowledgePatchRepositoryInterface
	embeddingJobs EmbeddingJobRepositoryInterface
}

func (t *testTxRepos) Topics() TopicRepositoryInterface {
	return t.topics
}

func (t *testTxRepos) KnowledgePatches() KnowledgePatchRepositoryInterface {
	return t.patches
}

func (t *testTxRepos) EmbeddingJobs() EmbeddingJobRepositoryInterface {
	return t.embeddingJobs
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
