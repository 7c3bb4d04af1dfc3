package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wealthadvisor-ai/internal/bootstrap"
	"wealthadvisor-ai/internal/knowledge"
	"wealthadvisor-ai/internal/repository/implementation"
	"wealthadvisor-ai/internal/service"
	"wealthadvisor-ai/pkg/vectorindex"
)

func newIndexCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the knowledge base index",
	}

	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Re-embed the knowledge base and replace the stored index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := e.cfg
			rdb := bootstrap.OpenRedis(cfg, e.log)
			if rdb != nil {
				defer rdb.Close()
			}
			embeddings, err := bootstrap.NewEmbeddingCache(cfg, rdb, nil, e.log)
			if err != nil {
				return err
			}
			corpus := knowledge.CorpusFunc(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)

			if cfg.Retrieval.Backend == bootstrap.BackendPgvector {
				db, err := bootstrap.OpenDatabase(cfg, e.log)
				if err != nil {
					return err
				}
				if db == nil {
					return fmt.Errorf("pgvector backend needs DB_CONNECTION_STRING")
				}
				r := service.NewPgvectorRetriever(implementation.NewKnowledgeChunkRepository(db), e.log)
				if err := r.Sync(cmd.Context(), corpus, embeddings, true); err != nil {
					return err
				}
				fmt.Fprintln(e.out, "pgvector knowledge table rebuilt")
				return nil
			}

			ix, err := vectorindex.NewHolder(cfg.Storage.IndexPath, e.log.Zap()).Rebuild(cmd.Context(), corpus, embeddings)
			if err != nil {
				return err
			}
			stats := embeddings.Stats()
			fmt.Fprintf(e.out, "indexed %d chunks (dim %d) into %s; embedding cache hits=%d misses=%d\n",
				ix.Len(), ix.Dim(), cfg.Storage.IndexPath, stats.Hits, stats.Misses)
			return nil
		},
	}

	cmd.AddCommand(rebuild)
	return cmd
}
