// Package labels implements the YOLO label file format: one line per
// detection, "classId centerX centerY width height", coordinates normalized
// to [0,1] with six decimal digits.
//
// Label files live under <datasetRoot>/labels/, mirroring the dataset's
// directory structure with the image extension replaced by .txt. The class
// vocabulary is written once per dataset as labels/classes.txt.
package labels
