package repository

// Schema statements are idempotent and applied at startup.
var schemaStatements = []string{
	`CREATE DATABASE IF NOT EXISTS stockpulse`,

	`CREATE TABLE IF NOT EXISTS stockpulse.daily_bars (
		symbol      String,
		date        Date,
		open        Float64,
		high        Float64,
		low         Float64,
		close       Float64,
		volume      Float64,
		update_time DateTime
	) ENGINE = ReplacingMergeTree(update_time)
	ORDER BY (symbol, date)`,

	`CREATE TABLE IF NOT EXISTS stockpulse.predictions (
		symbol       String,
		name         String,
		board        String,
		price        Float64,
		predict_date Date,
		base_date    Date,
		prob_up      Float64,
		signal       String,
		reason       String,
		rsi          Float64,
		above_bb     UInt8,
		mom_weak     UInt8,
		drawdown_5d  Float64,
		sentiment    Float64,
		train_rows   Int32,
		created_at   DateTime
	) ENGINE = ReplacingMergeTree(created_at)
	ORDER BY (symbol, predict_date)`,

	`CREATE TABLE IF NOT EXISTS stockpulse.backtests (
		symbol            String,
		start_date        Date,
		end_date          Date,
		initial_capital   Float64,
		final_value       Float64,
		cumulative_return Float64,
		annualized_return Float64,
		max_drawdown      Float64,
		sharpe_ratio      Float64,
		win_rate          Float64,
		trade_count       Int32,
		created_at        DateTime
	) ENGINE = ReplacingMergeTree(created_at)
	ORDER BY (symbol, start_date, end_date, initial_capital)`,

	`CREATE TABLE IF NOT EXISTS stockpulse.scan_backtests (
		board             String,
		start_date        Date,
		end_date          Date,
		top_k             Int32,
		min_prob          Float64,
		symbols           Int32,
		days              Int32,
		total_return      Float64,
		annualized_return Float64,
		volatility        Float64,
		sharpe_ratio      Float64,
		max_drawdown      Float64,
		win_rate          Float64,
		created_at        DateTime
	) ENGINE = ReplacingMergeTree(created_at)
	ORDER BY (board, start_date, end_date, top_k, min_prob)`,

	`CREATE TABLE IF NOT EXISTS stockpulse.stocks (
		symbol     String,
		name       String,
		board      String,
		updated_at DateTime
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY symbol`,
}

// SchemaStatements returns the DDL applied by Init.
func SchemaStatements() []string {
	out := make([]string, len(schemaStatements))
	copy(out, schemaStatements)
	return out
}
