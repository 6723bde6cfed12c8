package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// Database schema overview:
// 1. candidates - Profiles built from resume uploads
// 2. interviews - One attempt at the fixed six-question sequence per candidate
// 3. questions - The generated question set, immutable once created
// 4. answers - At most one per question, scored in place after submission
// 5. session_states - Singleton row holding the current candidate/interview
//    pointer pair and the resuming flag
