// Package prepflow provides data-preparation and modeling pipelines for
// tabular data: quality reporting, fit/transform cleaning, classification
// training with schema-reconciled inference, cross-validated
// hyperparameter tuning and model explainability.
//
// The core contract is the fit/transform and train/predict artifact
// pipeline: parameters are learned once from a reference table, stored
// under a deterministic identity, and later replayed deterministically
// against the same or a differently-shaped table.
//
// # Packages
//
//   - table: the columnar data model shared by every pipeline
//   - dataset: seeded synthetic dataset registry with memoized generation
//   - store: keyed in-memory artifact stores
//   - quality: missing/duplicate/outlier reports
//   - cleaning: imputation, outlier policy and categorical encoding
//   - pipeline: train/predict with frozen feature schemas
//   - tuning: grid and random search under stratified cross-validation
//   - explain: global and per-instance feature attribution
//   - eda, multivar: exploratory statistics, PCA and k-means
//   - api, cmd/prepflowd: the HTTP boundary over the core
//
// All artifacts live in process memory for the lifetime of the process;
// there is no persistence layer.
package prepflow
