package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_active_phone_unique",
			SQL: `SELECT phone, COUNT(*) FROM field_workers
                  WHERE active AND duplicate_reason IS NULL
                  GROUP BY phone HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_approved_have_approver",
			SQL: `SELECT id FROM field_workers
                  WHERE status = 'approved' AND (approved_by IS NULL OR approved_at IS NULL)`,
		},
		{
			Name: "O3_rejected_have_reason",
			SQL: `SELECT id FROM field_workers
                  WHERE status = 'rejected' AND (reject_reason IS NULL OR btrim(reject_reason) = '')`,
		},
		{
			Name: "O4_pending_unsettled",
			SQL: `SELECT id FROM field_workers
                  WHERE status = 'pending'
                    AND (approved_by IS NOT NULL OR approved_at IS NOT NULL OR reject_reason IS NOT NULL)`,
		},
		{
			Name: "O5_village_identity_unique",
			SQL: `SELECT lower(name), lower(block), COUNT(*) FROM villages
                  GROUP BY lower(name), lower(block) HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_pending_geometry_hidden",
			SQL:  `SELECT id FROM villages WHERE geo_pending AND show_pin`,
		},
		{
			Name: "O7_worker_block_matches_village",
			SQL: `SELECT fw.id FROM field_workers fw
                  JOIN villages v ON v.id = fw.village_id
                  WHERE lower(btrim(fw.block)) <> lower(btrim(v.block))`,
		},
		{
			Name: "O8_activity_color_mapping",
			SQL: `SELECT block_name FROM block_statistics
                  WHERE (activity_level, activity_color) NOT IN (
                      ('none', '#9ca3af'), ('low', '#f97316'),
                      ('medium', '#f59e0b'), ('high', '#10b981'))`,
		},
		{
			Name: "O9_density_needs_population",
			SQL:  `SELECT block_name FROM block_statistics WHERE population = 0 AND seva_density <> 0`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
